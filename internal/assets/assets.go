// Package assets embeds the client JavaScript and CSS served with the page
package assets

import "embed"

//go:embed client/*
var clientFS embed.FS

const (
	ClientJSName  = "signup.js"
	ClientCSSName = "signup.css"
)

// GetClientJS returns the page script
func GetClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/" + ClientJSName)
}

// GetClientCSS returns the page stylesheet
func GetClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/" + ClientCSSName)
}
