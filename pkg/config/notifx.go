package config

// NotifxConfig configures alert delivery for retry exhaustion.
type NotifxConfig struct {
	Provider    string
	FromAddress string
	FromName    string
	AlertTo     []string
	AWSRegion   string
}

func loadNotifxConfig() NotifxConfig {
	return NotifxConfig{
		Provider:    getEnv("NOTIFX_PROVIDER", "console"),
		FromAddress: getEnv("NOTIFX_FROM_ADDRESS", "alerts@raffleport.io"),
		FromName:    getEnv("NOTIFX_FROM_NAME", "Raffle Relay"),
		AlertTo:     getEnvStringSlice("NOTIFX_ALERT_TO", nil),
		AWSRegion:   getEnv("NOTIFX_AWS_REGION", getEnv("AWS_REGION", "us-east-1")),
	}
}
