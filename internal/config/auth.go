package config

const (
	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"
)

type AuthConfig struct {
	Provider                string `yaml:"provider"`
	FirebaseProjectID       string `yaml:"firebase_project_id"`
	FirebaseCredentialsFile string `yaml:"firebase_credentials_file"`
}

func loadAuthConfig() *AuthConfig {
	return &AuthConfig{
		Provider:                getEnv("AUTH_PROVIDER", AuthProviderJWT),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
	}
}
