package postadmin

import "embed"

// EmbeddedAssets holds the admin stylesheet and script served under /assets/.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
