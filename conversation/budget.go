package conversation

import (
	"sync"

	"github.com/linanwx/labmate/logger"
	"github.com/tiktoken-go/tokenizer"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func loadCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		enc, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			logger.Warn("tokenizer unavailable, estimating token counts", "err", err)
			return
		}
		codec = enc
	})
	return codec
}

// CountTokens returns the cl100k token count of text. When the tokenizer
// cannot be loaded it falls back to one token per four bytes.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := loadCodec(); enc != nil {
		ids, _, err := enc.Encode(text)
		if err == nil {
			return len(ids)
		}
		logger.Warn("token count failed", "err", err)
	}
	return (len(text) + 3) / 4
}
