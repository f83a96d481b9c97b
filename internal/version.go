package internal

// Version is the current playchat release, updated with each tag.
const Version = "0.3.0"
