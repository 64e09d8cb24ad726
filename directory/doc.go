// Package directory groups the bundled goAccount.UserDirectory
// implementations: memory for tests and local runs, postgres for
// deployments.
package directory
