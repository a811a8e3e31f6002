package model

// Version is the release reported by --version and the web API.
const Version = "0.4.1"
