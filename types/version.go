package types

// Version is the canonical project version. The CLI and the completion
// signal contract share this version.
const Version = "0.4.0"
