// Package recorder contains core domain types for the class recorder launcher.
//
// It defines Record (the pair of folders the user last chose) with validation
// and a Clone helper, and Notification, published once a backend start settles.
package recorder
