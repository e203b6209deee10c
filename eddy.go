package eddy

const Version = "v0.3.1"
