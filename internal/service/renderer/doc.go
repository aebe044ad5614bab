// Package renderer produces the backend's application.properties from a template.
package renderer
