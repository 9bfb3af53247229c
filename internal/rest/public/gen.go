package public

//go:generate go tool oapi-codegen -config cfg.yaml api.yaml
