// Package zapbox holds the version of the zapbox tools.
package zapbox

// Version is printed by the version command.
const Version = "v0.1.0"
