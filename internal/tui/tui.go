package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"siteclone/internal/config"
	"siteclone/internal/generate"
)

type Result struct {
	Config     config.Config
	ConfigPath string
	SaveConfig bool
	ServeNow   bool
}

// Run walks the user through building a config file. The API key is never
// asked for; it is read from the environment at startup.
func Run() (Result, error) {
	printBanner()
	state := newFormState()

	if err := manageConfigs(state); err != nil {
		return Result{}, err
	}

	form := buildForm(state).WithTheme(huh.ThemeDracula())
	if err := form.Run(); err != nil {
		return Result{}, err
	}

	return buildResult(state)
}

func printBanner() {
	fmt.Print(`
      _ _            _
  ___(_) |_ ___  ___| | ___  _ __   ___
 / __| | __/ _ \/ __| |/ _ \| '_ \ / _ \
 \__ \ | ||  __/ (__| | (_) | | | |  __/
 |___/_|\__\___|\___|_|\___/|_| |_|\___|
`)
}

func manageConfigs(state *formState) error {
	for {
		files, err := listConfigFiles()
		if err != nil {
			return fmt.Errorf("failed to list configs: %w", err)
		}
		if len(files) == 0 {
			return nil
		}

		var selectedFile string
		opts := []huh.Option[string]{
			huh.NewOption("Start fresh (defaults)", ""),
		}
		for _, f := range files {
			opts = append(opts, huh.NewOption(fmt.Sprintf("Manage %s", f), f))
		}

		selectForm := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Manage Configurations").
					Description("Select a config to edit or manage, or start from defaults.").
					Options(opts...).
					Value(&selectedFile),
			),
		).WithTheme(huh.ThemeDracula())
		if err := selectForm.Run(); err != nil {
			return err
		}
		if selectedFile == "" {
			return nil
		}

		var action string
		actionForm := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title(fmt.Sprintf("Action for %s", selectedFile)).
					Options(
						huh.NewOption("Edit this config", "load"),
						huh.NewOption("Delete this config", "delete"),
						huh.NewOption("Back to list", "back"),
					).
					Value(&action),
			),
		).WithTheme(huh.ThemeDracula())
		if err := actionForm.Run(); err != nil {
			return err
		}

		done, err := executeConfigAction(action, selectedFile, state)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func listConfigFiles() ([]string, error) {
	var out []string
	for _, dir := range config.SearchDirs() {
		files, err := filepath.Glob(filepath.Join(dir, "*.json5"))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if !strings.HasSuffix(f, ".local.json5") {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func executeConfigAction(action, selectedFile string, state *formState) (bool, error) {
	switch action {
	case "load":
		cfg, err := config.Load(selectedFile)
		if err != nil {
			return false, fmt.Errorf("failed to load %s: %w", selectedFile, err)
		}
		state.fromConfig(cfg)
		state.configPath = selectedFile
		state.overwrite = true
		return true, nil

	case "delete":
		var confirmDelete bool
		if err := huh.NewConfirm().Title(fmt.Sprintf("Really delete %s?", selectedFile)).Affirmative("Yes, delete it.").Negative("No, keep it.").Value(&confirmDelete).Run(); err != nil {
			return false, err
		}
		if confirmDelete {
			if err := os.Remove(selectedFile); err != nil {
				return false, fmt.Errorf("failed to delete %s: %w", selectedFile, err)
			}
		}
	}
	return false, nil
}

type formState struct {
	base config.Config

	provider           string
	model              string
	strategy           string
	timeoutSecStr      string
	renderTimeoutStr   string
	generateTimeoutStr string
	maxTokensStr       string
	headless           bool
	installBrowsers    bool
	userAgent          string
	maxCharsStr        string
	templateFile       string
	addr               string
	originsStr         string
	outputDir          string

	configPath  string
	overwrite   bool
	finalAction string
}

func newFormState() *formState {
	s := &formState{
		configPath:  config.DefaultConfigPath(),
		finalAction: "save_only",
	}
	s.fromConfig(config.Default())
	return s
}

func (s *formState) fromConfig(cfg config.Config) {
	s.base = cfg
	s.provider = cfg.Provider
	s.model = cfg.Model
	s.strategy = cfg.Strategy
	s.timeoutSecStr = strconv.Itoa(cfg.TimeoutSeconds)
	s.renderTimeoutStr = strconv.Itoa(cfg.RenderTimeoutSeconds)
	s.generateTimeoutStr = strconv.Itoa(cfg.GenerateTimeoutSeconds)
	s.maxTokensStr = strconv.Itoa(cfg.MaxOutputTokens)
	s.headless = cfg.Headless == nil || *cfg.Headless
	s.installBrowsers = cfg.InstallBrowsers
	s.userAgent = cfg.UserAgent
	s.maxCharsStr = strconv.Itoa(cfg.Prompt.MaxChars)
	s.templateFile = cfg.Prompt.TemplateFile
	s.addr = cfg.Server.Addr
	s.originsStr = strings.Join(cfg.Server.AllowedOrigins, ", ")
	s.outputDir = cfg.OutputDir
}

func buildForm(state *formState) *huh.Form {
	return huh.NewForm(
		buildProviderGroup(state),
		buildAcquisitionGroup(state),
		buildPromptGroup(state),
		buildServerGroup(state),
		buildFinishGroup(state),
	)
}

func buildProviderGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewSelect[string]().Title("Provider").
			Description("Key comes from GOOGLE_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY.").
			Value(&state.provider).Options(
			huh.NewOption("Google Gemini", string(generate.ProviderGemini)),
			huh.NewOption("OpenAI", string(generate.ProviderOpenAI)),
			huh.NewOption("Anthropic", string(generate.ProviderAnthropic)),
		),
		huh.NewInput().Title("Model").Description("Empty uses the provider default.").Value(&state.model),
		huh.NewInput().Title("Generation timeout (seconds)").Value(&state.generateTimeoutStr).
			Validate(validateIntString(1, 3600)),
		huh.NewInput().Title("Max output tokens").Value(&state.maxTokensStr).
			Validate(validateIntString(1, 1000000)),
	).Title("Generation")
}

func buildAcquisitionGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewSelect[string]().Title("Strategy").Description("How the original page is fetched.").Value(&state.strategy).Options(
			huh.NewOption("direct (plain HTTP GET)", "direct"),
			huh.NewOption("rendered (headless Chromium)", "rendered"),
		),
		huh.NewInput().Title("Fetch timeout (seconds)").Value(&state.timeoutSecStr).
			Validate(validateIntString(1, 3600)),
		huh.NewInput().Title("Render timeout (seconds)").Value(&state.renderTimeoutStr).
			Validate(validateIntString(1, 3600)),
		huh.NewConfirm().Title("Headless").Description("Hide the browser window (rendered)?").Value(&state.headless),
		huh.NewConfirm().Title("Install browsers").Description("Download Chromium on first rendered fetch?").Value(&state.installBrowsers),
		huh.NewInput().Title("User-Agent").Value(&state.userAgent),
	).Title("Acquisition")
}

func buildPromptGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().Title("Prompt budget (characters)").Value(&state.maxCharsStr).
			Validate(validateIntString(1, 10000000)),
		huh.NewInput().Title("Template file").Description("Optional: must contain {{HTML}}.").Value(&state.templateFile),
		huh.NewInput().Title("Output dir").Description("Where `siteclone clone` writes index.html.").Value(&state.outputDir),
	).Title("Prompt & Output")
}

func buildServerGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().Title("Listen address").Placeholder(config.DefaultAddr).Value(&state.addr),
		huh.NewInput().Title("Allowed origins").Description("Comma separated, * for any.").Value(&state.originsStr),
	).Title("Server")
}

func buildFinishGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewSelect[string]().Title("Action").Value(&state.finalAction).Options(
			huh.NewOption("Only save config", "save_only"),
			huh.NewOption("Save config and start server", "save_and_serve"),
			huh.NewOption("Start server without saving", "serve"),
		),
		huh.NewInput().Title("Config path").
			Description("Path for 'Save' actions.").
			Value(&state.configPath).
			Validate(func(s string) error {
				if state.finalAction == "serve" || state.overwrite {
					return nil
				}
				return validateNewFilename(s)
			}),
	).Title("Finish")
}

func buildResult(state *formState) (Result, error) {
	timeoutSec, err := parsePositiveInt(state.timeoutSecStr, "fetch timeout must be a positive integer")
	if err != nil {
		return Result{}, err
	}
	renderTimeout, err := parsePositiveInt(state.renderTimeoutStr, "render timeout must be a positive integer")
	if err != nil {
		return Result{}, err
	}
	generateTimeout, err := parsePositiveInt(state.generateTimeoutStr, "generation timeout must be a positive integer")
	if err != nil {
		return Result{}, err
	}
	maxTokens, err := parsePositiveInt(state.maxTokensStr, "max output tokens must be a positive integer")
	if err != nil {
		return Result{}, err
	}
	maxChars, err := parsePositiveInt(state.maxCharsStr, "prompt budget must be a positive integer")
	if err != nil {
		return Result{}, err
	}

	cfg := state.base
	headless := state.headless
	cfg.Provider = state.provider
	cfg.Model = strings.TrimSpace(state.model)
	cfg.Strategy = state.strategy
	cfg.TimeoutSeconds = timeoutSec
	cfg.RenderTimeoutSeconds = renderTimeout
	cfg.GenerateTimeoutSeconds = generateTimeout
	cfg.MaxOutputTokens = maxTokens
	cfg.Headless = &headless
	cfg.InstallBrowsers = state.installBrowsers
	cfg.UserAgent = strings.TrimSpace(state.userAgent)
	cfg.Prompt.MaxChars = maxChars
	cfg.Prompt.TemplateFile = strings.TrimSpace(state.templateFile)
	cfg.OutputDir = strings.TrimSpace(state.outputDir)
	cfg.Server.Addr = strings.TrimSpace(state.addr)
	cfg.Server.AllowedOrigins = splitList(state.originsStr)
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{Config: cfg, ConfigPath: state.configPath}
	switch state.finalAction {
	case "save_only":
		res.SaveConfig = true
	case "save_and_serve":
		res.SaveConfig = true
		res.ServeNow = true
	case "serve":
		res.ServeNow = true
	}

	if res.SaveConfig {
		if err := writeConfig(state.configPath, cfg); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

func writeConfig(path string, cfg config.Config) error {
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0600)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePositiveInt(s, errMsg string) (int, error) {
	val, err := parseInt(s)
	if err != nil || val <= 0 {
		return 0, errors.New(errMsg)
	}
	return val, nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func validateIntString(minVal, maxVal int) func(string) error {
	return func(s string) error {
		v, err := parseInt(s)
		if err != nil {
			return errors.New("must be an integer")
		}
		if v < minVal || v > maxVal {
			return fmt.Errorf("must be between %d and %d", minVal, maxVal)
		}
		return nil
	}
}

func validateNewFilename(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("filename cannot be empty")
	}
	if strings.ContainsAny(filepath.Base(s), `:*?"<>|`) {
		return errors.New("invalid characters")
	}
	if _, err := os.Stat(ensureJSON5Extension(s)); err == nil {
		return errors.New("file already exists")
	}
	return nil
}

func ensureJSON5Extension(s string) string {
	if !strings.HasSuffix(s, ".json5") && !strings.HasSuffix(s, ".json") {
		return s + ".json5"
	}
	return s
}
