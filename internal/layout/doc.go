// Package layout names every path the launcher depends on: the provisioned
// runtime and media tool under dependencies/, the backend artifact under
// executable/, and the per-user application data files.
package layout
