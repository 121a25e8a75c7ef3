// Package web holds the page templates and static assets compiled into the
// diary binary.
package web

import "embed"

// TemplatesFS embeds the page and partial templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the stylesheet and the focus script.
//
//go:embed static/*
var StaticFS embed.FS
