package config

func GetPort() string {
	return GetEnvOrDefault("PORT", "8080")
}

// GetCatalogPath returns CATALOG_PATH; empty selects the built-in demo catalog.
func GetCatalogPath() string {
	return GetEnvOrDefault("CATALOG_PATH", "")
}

// GetAllowedOrigins lists websocket origins; empty allows any.
func GetAllowedOrigins() string {
	return GetEnvOrDefault("ALLOWED_ORIGINS", "")
}
