// Package utils exposes reusable helpers consumed by the CLI and the audit run.
//
// It houses the ConfigurationLoader, which layers embedded defaults, files,
// dotenv files and environment variables through Viper, the LoggerFactory that
// builds zap loggers, and the accessor for values carried in command contexts.
package utils
