package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/linanwx/labmate/config"
	"github.com/linanwx/labmate/provider"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize labmate configuration",
	Long:  `Create the labmate configuration directory and config file.`,
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

// providerURLs maps provider names to their API key portal URLs.
var providerURLs = map[string]string{
	"gemini":    "https://aistudio.google.com/app/apikey",
	"openai":    "https://platform.openai.com/api-keys",
	"anthropic": "https://console.anthropic.com",
}

// onboardAnswers holds what the wizard collected.
type onboardAnswers struct {
	Provider string
	Model    string
	APIKey   string
	Lesson   string
	WebAddr  string
}

func runOnboard(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config already exists at:", configPath)
		fmt.Println("To reconfigure, edit the file directly or delete it first.")
		return nil
	}

	// --- interactive wizard ---

	defaults := config.DefaultConfig()
	a := onboardAnswers{
		Provider: defaults.Assistant.Provider,
		Lesson:   strings.Join(defaults.Assistant.Lessons, "; "),
		WebAddr:  defaults.WebAddr(),
	}

	// Step 1: select provider
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose your LLM provider").
				Description("labmate sends each question and the terminal snapshot to this provider.").
				Options(buildProviderOptions()...).
				Value(&a.Provider),
		),
	).Run()
	if err != nil {
		return err
	}

	// Step 2: model and API key (dynamic based on provider)
	a.Model = config.DefaultModel(a.Provider)
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Model for "+provider.DisplayName(a.Provider)).
				Description("Leave the suggested value unless your course uses another model.").
				Value(&a.Model),
			huh.NewInput().
				Title("Enter your "+provider.DisplayName(a.Provider)+" API key").
				Description("Create one at "+providerURLs[a.Provider]+". Leave empty to use "+config.EnvKeyName(a.Provider)+" instead.").
				EchoMode(huh.EchoModePassword).
				Value(&a.APIKey),
		),
	).Run()
	if err != nil {
		return err
	}

	// Step 3: lab settings
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Lesson reference").
				Description("Cited in every answer. Separate several lessons with ';'.").
				Value(&a.Lesson),
			huh.NewInput().
				Title("Web listen address").
				Description("Where 'labmate serve' hosts the lab page.").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("address is required")
					}
					return nil
				}).
				Value(&a.WebAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	// --- apply config ---

	cfg := applyOnboardAnswers(a)
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("labmate initialized successfully!")
	fmt.Println()
	fmt.Println("  Config:", configPath)
	fmt.Println("  Provider:", cfg.Assistant.Provider)
	fmt.Println("  Model:", cfg.Assistant.Model)
	fmt.Println("  API key:", cfg.APIKey())
	fmt.Println()
	fmt.Println("Run 'labmate serve' to start.")
	return nil
}

// applyOnboardAnswers builds the config written by the wizard.
func applyOnboardAnswers(a onboardAnswers) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Assistant.Provider = strings.ToLower(strings.TrimSpace(a.Provider))
	cfg.Assistant.Model = strings.TrimSpace(a.Model)
	if cfg.Assistant.Model == "" {
		cfg.Assistant.Model = config.DefaultModel(cfg.Assistant.Provider)
	}
	cfg.SetAPIKey(cfg.Assistant.Provider, a.APIKey)

	var lessons []string
	for _, l := range strings.Split(a.Lesson, ";") {
		if l = strings.TrimSpace(l); l != "" {
			lessons = append(lessons, l)
		}
	}
	if len(lessons) > 0 {
		cfg.Assistant.Lessons = lessons
	}
	if addr := strings.TrimSpace(a.WebAddr); addr != "" {
		cfg.Web.Addr = addr
	}
	return cfg
}

func buildProviderOptions() []huh.Option[string] {
	names := provider.Supported()
	// Put gemini first.
	sorted := make([]string, 0, len(names))
	for _, n := range names {
		if n == "gemini" {
			sorted = append([]string{n}, sorted...)
		} else {
			sorted = append(sorted, n)
		}
	}
	options := make([]huh.Option[string], 0, len(sorted))
	for _, name := range sorted {
		label := provider.DisplayName(name) + " (" + config.DefaultModel(name) + ")"
		if name == "gemini" {
			label += " [Recommended]"
		}
		options = append(options, huh.NewOption(label, name))
	}
	return options
}
