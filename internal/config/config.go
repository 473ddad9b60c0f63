package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and costs.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign session tokens
    SessionTTLDays int    // session token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing
    FrontendOrigin string // origin used to build confirmation/reset links
    LicenseSegLen  int    // characters per license key segment (4 or 5)
    MailerDriver   string // "smtp" to send real mail, "log" to log instead
    SMTPHost       string // SMTP server host (only with MailerDriver=smtp)
    SMTPPort       string // SMTP server port
    SMTPUser       string // SMTP auth username
    SMTPPass       string // SMTP auth password
    EmailFrom      string // From address for outgoing mail
    EmailFromName  string // display name for the From header
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Values that have a
// sensible default fall back to it when unset.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),      // environment (dev/test/prod)
        Port:           must("APP_PORT"),     // port to bind the HTTP server
        DBUser:         must("DB_USER"),      // database user
        DBPass:         os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:         must("DB_HOST"),      // database host
        DBPort:         must("DB_PORT"),      // database port
        DBName:         must("DB_NAME"),      // database name
        JWTSecret:      must("JWT_SECRET"),   // secret used for signing session tokens
        SessionTTLDays: defInt("SESSION_TTL_DAYS", 7),
        BcryptCost:     mustInt("BCRYPT_COST"),
        FrontendOrigin: must("FRONTEND_ORIGIN"),
        LicenseSegLen:  defInt("LICENSE_KEY_SEGMENT_LEN", 5),
        MailerDriver:   def("MAILER_DRIVER", "log"),
        SMTPHost:       os.Getenv("SMTP_HOST"),
        SMTPPort:       def("SMTP_PORT", "587"),
        SMTPUser:       os.Getenv("SMTP_USER"),
        SMTPPass:       os.Getenv("SMTP_PASS"),
        EmailFrom:      os.Getenv("EMAIL_FROM"),
        EmailFromName:  def("EMAIL_FROM_NAME", "Avalora Visuals"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

// def returns the value of an optional environment variable or the given
// default when it is unset or empty.
func def(key, fallback string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return fallback
}

// defInt is like def() but converts the value into an integer, falling
// back to the default on parse errors as well.
func defInt(key string, fallback int) int {
    v := os.Getenv(key)
    if v == "" {
        return fallback
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        return fallback
    }
    return n
}
