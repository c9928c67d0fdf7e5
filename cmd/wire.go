package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	authadapter "github.com/psu-rc/rcops/internal/adapters/auth"
	"github.com/psu-rc/rcops/internal/adapters/globus"
	tomlrepo "github.com/psu-rc/rcops/internal/adapters/repo/toml"
	chainstore "github.com/psu-rc/rcops/internal/adapters/secrets/chain"
	filestore "github.com/psu-rc/rcops/internal/adapters/secrets/file"
	passstore "github.com/psu-rc/rcops/internal/adapters/secrets/pass"
	"github.com/psu-rc/rcops/internal/adapters/slurm"
	"github.com/psu-rc/rcops/internal/application"
	"github.com/psu-rc/rcops/internal/domain"
	"github.com/psu-rc/rcops/internal/ports"
	"github.com/psu-rc/rcops/internal/version"
)

const (
	configDirName  = ".rcops"
	configFileName = "config"
	envPrefix      = "RCOPS"

	keyLogLevel           = "log.level"
	keyCredentialsBackend = "credentials.backend"
	keyCredentialsDir     = "credentials.dir"
	keyAuthBaseURL        = "auth.base_url"
	keyAuthCallbackListen = "auth.callback_listen"
	keyAuthOpenBrowser    = "auth.open_browser"
	keyTransferBaseURL    = "transfer.base_url"
	keyTransferRetry      = "transfer.retry_interval"
	keyAccountingAccount  = "accounting.account"
	keyAccountingOutput   = "accounting.output_dir"
	keyPollInterval       = "poll.interval"
	keyPollTimeout        = "poll.timeout"
)

var errUnknownBackend = errors.New("unknown credentials backend")

const consentMessage = "Encountered a ConsentRequired error.\nYou must login a second time to grant consents.\n\n"

// app holds everything the commands share. It is filled in by wire once
// flags are parsed, so --config can move every path.
type app struct {
	cfg        *viper.Viper
	configFile string
	logger     *slog.Logger
	now        func() time.Time

	profiles  ports.ProfileRepository
	tasks     ports.TaskRepository
	secrets   ports.SecretStore
	scheduler ports.Scheduler
}

func newApp() *app {
	return &app{
		cfg:    viper.New(),
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
}

func (a *app) wire(cmd *cobra.Command) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}

	if err := a.loadConfig(homeDir); err != nil {
		return err
	}
	a.logger = newLogger(cmd.ErrOrStderr(), a.cfg.GetString(keyLogLevel))

	profiles, err := tomlrepo.NewProfileRepository(a.cfg)
	if err != nil {
		return fmt.Errorf("wire profile repository: %w", err)
	}
	tasks, err := tomlrepo.NewTaskRepository(a.cfg)
	if err != nil {
		return fmt.Errorf("wire task repository: %w", err)
	}
	secrets, err := newSecretStore(a.cfg.GetString(keyCredentialsBackend), a.cfg.GetString(keyCredentialsDir))
	if err != nil {
		return fmt.Errorf("wire credential backend: %w", err)
	}

	a.profiles = profiles
	a.tasks = tasks
	a.secrets = secrets
	a.scheduler = slurm.NewScheduler()

	a.logger.Debug("wired", "config", a.cfg.ConfigFileUsed(), "credentials", a.cfg.GetString(keyCredentialsBackend))
	return nil
}

func (a *app) loadConfig(homeDir string) error {
	cfg := a.cfg
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	rcopsDir := filepath.Join(homeDir, configDirName)
	cfg.SetDefault(keyLogLevel, "info")
	cfg.SetDefault(keyCredentialsBackend, "file")
	cfg.SetDefault(keyCredentialsDir, filepath.Join(rcopsDir, "credentials"))
	cfg.SetDefault(keyAuthBaseURL, authadapter.DefaultAuthBaseURL)
	cfg.SetDefault(keyAuthCallbackListen, "127.0.0.1:0")
	cfg.SetDefault(keyAuthOpenBrowser, true)
	cfg.SetDefault(keyTransferBaseURL, globus.DefaultBaseURL)
	cfg.SetDefault(keyTransferRetry, time.Second)
	cfg.SetDefault(keyAccountingAccount, "pches")
	cfg.SetDefault(keyAccountingOutput, ".")
	cfg.SetDefault(keyPollInterval, application.DefaultPollInterval)
	cfg.SetDefault(keyPollTimeout, time.Duration(0))

	if a.configFile != "" {
		cfg.SetConfigFile(a.configFile)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", a.configFile, err)
		}
		return nil
	}

	cfg.SetConfigName(configFileName)
	cfg.SetConfigType("toml")
	cfg.AddConfigPath(rcopsDir)
	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	return nil
}

func newSecretStore(backend string, dir string) (ports.SecretStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "file":
		return filestore.NewStore(dir), nil
	case "pass":
		return passstore.NewStore(), nil
	case "chain":
		return chainstore.NewPassFirstWithFileFallback(dir)
	default:
		return nil, fmt.Errorf("%w %q (file|pass|chain)", errUnknownBackend, backend)
	}
}

// loadProfile prefers the profiles file and falls back to the built-in jobs
// so a fresh install works before `rcops profile init`.
func (a *app) loadProfile(ctx context.Context, name string) (domain.TransferProfile, error) {
	if strings.TrimSpace(name) == "" {
		return domain.TransferProfile{}, errors.New("--profile is required")
	}

	profile, err := a.profiles.GetByName(ctx, name)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return domain.TransferProfile{}, err
	}

	for _, builtin := range domain.BuiltinProfiles() {
		if builtin.Name == name {
			a.logger.Debug("using built-in profile", "profile", name)
			return builtin, nil
		}
	}
	return domain.TransferProfile{}, fmt.Errorf("profile %s: %w", name, domain.ErrProfileNotFound)
}

func (a *app) openURL() authadapter.URLOpener {
	if a.cfg.GetBool(keyAuthOpenBrowser) {
		return nil
	}
	return func(string) error {
		return errors.New("browser disabled")
	}
}

func (a *app) credentialCache(profile domain.TransferProfile) *application.CredentialCache {
	return application.NewCredentialCache(a.secrets, profile.CredentialKey, application.DefaultResourceServer)
}

// authService builds the authorizer for one profile. With callback set a
// loopback redirect receiver replaces the pasted-code console prompt; the
// returned closer releases it.
func (a *app) authService(cmd *cobra.Command, profile domain.TransferProfile, callback bool) (*application.AuthService, func(), error) {
	flow := authadapter.NewNativeAppFlow(profile.ClientID, authadapter.WithAuthBaseURL(a.cfg.GetString(keyAuthBaseURL)))

	var source ports.AuthCodeSource
	closer := func() {}
	if callback {
		server, err := authadapter.StartCallbackServer(a.cfg.GetString(keyAuthCallbackListen), cmd.OutOrStdout(), a.openURL())
		if err != nil {
			return nil, nil, err
		}
		source = server
		closer = func() { _ = server.Close() }
	} else {
		source = authadapter.NewConsoleCodeSource(flow.HostedRedirectURL(), cmd.InOrStdin(), cmd.OutOrStdout(), a.openURL())
	}

	return application.NewAuthService(flow, source, a.credentialCache(profile), a.logger), closer, nil
}

// authorize returns a token source for profile, logging in interactively on
// first use.
func (a *app) authorize(cmd *cobra.Command, profile domain.TransferProfile, scopes []string) (ports.TokenSource, error) {
	auth, closeAuth, err := a.authService(cmd, profile, false)
	if err != nil {
		return nil, err
	}
	defer closeAuth()

	tokens, _, err := auth.Authorize(cmd.Context(), scopes)
	if err != nil {
		return nil, fmt.Errorf("authorize profile %s: %w", profile.Name, err)
	}
	return tokens, nil
}

func (a *app) transferService(cmd *cobra.Command, tokens ports.TokenSource) *application.TransferService {
	client := globus.NewClient(
		a.cfg.GetString(keyTransferBaseURL),
		tokens,
		globus.WithUserAgent("rcops/"+version.Version),
		globus.WithRetryInterval(a.cfg.GetDuration(keyTransferRetry)),
	)

	return application.NewTransferService(client, a.tasks,
		application.WithLogger(a.logger),
		application.WithConsentHandler(func(_ context.Context, _ *domain.ConsentRequiredError) {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), consentMessage)
		}),
	)
}

func (a *app) accountingService() *application.AccountingService {
	return application.NewAccountingService(a.scheduler, clockFunc(a.now), a.logger)
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time {
	return f()
}

func transferScopes() []string {
	return []string{authadapter.TransferScope}
}
