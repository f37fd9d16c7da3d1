package chathub

var SanitizeFileName = sanitizeFileName
