package entity

const (
	ProviderResy      = "resy"
	ProviderOpenTable = "opentable"
)
