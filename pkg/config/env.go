package config

// EnvPrefix scopes every variable read by Load.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvUseSQLite = "STOREFRONT_USE_SQLITE"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret              = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer              = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins             = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "STOREFRONT_REFRESH_TOKEN_TTL_MINUTES"

	EnvCheckoutFreeShippingThreshold = "STOREFRONT_CHECKOUT_FREE_SHIPPING_THRESHOLD"
	EnvCheckoutFlatShippingFee       = "STOREFRONT_CHECKOUT_FLAT_SHIPPING_FEE"

	EnvCORSAllowedOrigins = "STOREFRONT_CORS_ALLOWED_ORIGINS"

	EnvGCPProjectID          = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic     = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
	EnvPubSubAnalyticsSub    = "STOREFRONT_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvBigQueryDataset       = "STOREFRONT_BIGQUERY_DATASET"
	EnvBigQueryOrderFactsTbl = "STOREFRONT_BIGQUERY_ORDER_FACTS_TABLE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
