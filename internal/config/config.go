package config

import (
	"crypto/rsa"
	"encoding/base64"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"

	"github.com/dwellos/requests-service/internal/utils"
)

type Config struct {
	OrganizationName string
	AppName          string
	AppPort          string
	AppUrl           string
	UniqueRunNumber  string
	UniqueRunnerID   string

	// Database
	DBUrl string

	// External services
	TwilioAccountSID string
	TwilioAuthToken  string
	SendGridAPIKey   string

	// Auth: tokens are issued by the identity service, we only verify.
	RSAPublicKey *rsa.PublicKey

	// LaunchDarkly flag snapshots
	LDFlag_UsingIsolatedSchema       bool
	LDFlag_SeedDemoData              bool
	LDFlag_EmailNotificationsEnabled bool
	LDFlag_SMSNotificationsEnabled   bool
	LDFlag_SendgridFromEmail         string
	LDFlag_SendgridSandboxMode       bool
	LDFlag_TwilioFromPhone           string
	LDFlag_CORSHighSecurity          bool

	ldClient *ld.LDClient
}

const (
	OrganizationName    = "Dwellos"
	LDConnectionTimeout = 5 * time.Second
)

// build-time overrides, set with -ldflags
var (
	AppName             string
	UniqueRunNumber     string
	UniqueRunnerID      string
	LDServerContextKey  string
	LDServerContextKind string
)

func LoadConfig() *Config {
	if AppName == "" {
		utils.Logger.Fatal("AppName ldflag missing")
	}
	if UniqueRunNumber == "" {
		utils.Logger.Fatal("UniqueRunNumber ldflag missing")
	}
	if UniqueRunnerID == "" {
		utils.Logger.Fatal("UniqueRunnerID ldflag missing")
	}
	if LDServerContextKey == "" || LDServerContextKind == "" {
		utils.Logger.Fatal("LD context ldflags missing")
	}

	utils.Logger.Info("Loading config for app: ", AppName)

	env := os.Getenv("ENV")
	if env == "" {
		utils.Logger.Fatal("ENV env var is missing")
	}
	appUrl := os.Getenv("APP_URL_FROM_ANYWHERE")
	if appUrl == "" {
		utils.Logger.Fatal("APP_URL_FROM_ANYWHERE env var is missing")
	}
	appPort := os.Getenv("APP_PORT")
	if appPort == "" {
		utils.Logger.Fatal("APP_PORT env var is missing")
	}
	dbUrl := os.Getenv("DATABASE_URL")
	if dbUrl == "" {
		utils.Logger.Fatal("DATABASE_URL env var is missing")
	}

	pubPEMB64 := os.Getenv("RSA_PUBLIC_KEY_BASE64")
	if pubPEMB64 == "" {
		utils.Logger.Fatal("RSA_PUBLIC_KEY_BASE64 env var is missing")
	}
	pubPEM, err := base64.StdEncoding.DecodeString(pubPEMB64)
	if err != nil {
		utils.Logger.WithError(err).Fatal("RSA_PUBLIC_KEY_BASE64 is not valid base64")
	}
	rsaPub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA public key PEM")
	}

	sgAPI := os.Getenv("SENDGRID_API_KEY")
	if sgAPI == "" {
		utils.Logger.Fatal("SENDGRID_API_KEY env var is missing")
	}
	twSID := os.Getenv("TWILIO_ACCOUNT_SID")
	twToken := os.Getenv("TWILIO_AUTH_TOKEN")
	if twSID == "" || twToken == "" {
		utils.Logger.Fatal("TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN env vars are missing")
	}

	ldSDK := os.Getenv("LD_SDK_KEY")
	if ldSDK == "" {
		utils.Logger.Fatal("LD_SDK_KEY env var is missing")
	}

	ldClient, err := ld.MakeClient(ldSDK, LDConnectionTimeout)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create LaunchDarkly client")
	}
	if !ldClient.Initialized() {
		ldClient.Close()
		utils.Logger.Fatal("LaunchDarkly client failed to initialize")
	}

	ldCtx := ldcontext.NewWithKind(ldcontext.Kind(LDServerContextKind), LDServerContextKey)

	isolatedSchema := boolFlag(ldClient, "using_isolated_schema", ldCtx, false)
	seedDemoData := boolFlag(ldClient, "seed_demo_data", ldCtx, false)
	emailEnabled := boolFlag(ldClient, "email_notifications_enabled", ldCtx, true)
	smsEnabled := boolFlag(ldClient, "sms_notifications_enabled", ldCtx, false)
	sandboxMode := boolFlag(ldClient, "sendgrid_sandbox_mode", ldCtx, false)
	corsHighSecurity := boolFlag(ldClient, "cors_high_security", ldCtx, true)

	fromEmail, err := ldClient.StringVariation("sendgrid_from_email", ldCtx, "")
	if err != nil || fromEmail == "" {
		ldClient.Close()
		utils.Logger.Fatal("sendgrid_from_email flag error / empty")
	}
	fromPhone, err := ldClient.StringVariation("twilio_from_phone", ldCtx, "")
	if err != nil {
		ldClient.Close()
		utils.Logger.Fatal("twilio_from_phone flag error")
	}
	if smsEnabled && fromPhone == "" {
		ldClient.Close()
		utils.Logger.Fatal("twilio_from_phone flag empty while SMS notifications enabled")
	}

	utils.Logger.Infof("Loaded config for %s (%s)", AppName, env)

	return &Config{
		OrganizationName: OrganizationName,
		AppName:          AppName,
		AppPort:          appPort,
		AppUrl:           appUrl,
		UniqueRunNumber:  UniqueRunNumber,
		UniqueRunnerID:   UniqueRunnerID,

		DBUrl: dbUrl,

		TwilioAccountSID: twSID,
		TwilioAuthToken:  twToken,
		SendGridAPIKey:   sgAPI,

		RSAPublicKey: rsaPub,

		LDFlag_UsingIsolatedSchema:       isolatedSchema,
		LDFlag_SeedDemoData:              seedDemoData,
		LDFlag_EmailNotificationsEnabled: emailEnabled,
		LDFlag_SMSNotificationsEnabled:   smsEnabled,
		LDFlag_SendgridFromEmail:         fromEmail,
		LDFlag_SendgridSandboxMode:       sandboxMode,
		LDFlag_TwilioFromPhone:           fromPhone,
		LDFlag_CORSHighSecurity:          corsHighSecurity,

		ldClient: ldClient,
	}
}

func boolFlag(client *ld.LDClient, flag string, ctx ldcontext.Context, def bool) bool {
	val, err := client.BoolVariation(flag, ctx, def)
	if err != nil {
		client.Close()
		utils.Logger.Fatalf("%s flag error: %v", flag, err)
	}
	return val
}

func (c *Config) Close() {
	if c.ldClient != nil {
		c.ldClient.Close()
	}
}
