package web

import (
	"embed"
)

// The final binary includes all files under static/.
//
//go:embed static/*
var staticFiles embed.FS
