package config

// EnvPrefix is passed to envconfig.Process; individual fields carry fully
// prefixed names so the prefix stays informational.
const EnvPrefix = "PAYENGINE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "PAYENGINE_APP_ENV"
	EnvPort   = "PAYENGINE_APP_PORT"

	EnvDBDSN  = "PAYENGINE_DB_DSN"
	EnvDBHost = "PAYENGINE_DB_HOST"
	EnvDBUser = "PAYENGINE_DB_USER"
	EnvDBName = "PAYENGINE_DB_NAME"

	EnvRedisURL            = "PAYENGINE_REDIS_URL"
	EnvJWTSecret           = "PAYENGINE_JWT_SECRET"
	EnvJWTIssuer           = "PAYENGINE_JWT_ISSUER"
	EnvGCPProjectID        = "PAYENGINE_GCP_PROJECT_ID"
	EnvPubSubDomainTopic   = "PAYENGINE_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub     = "PAYENGINE_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvWebhookSignatureKey = "PAYENGINE_WEBHOOK_SIGNATURE_KEY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
