// Package pii redacts personal identifiers and credentials from free text.
//
// Legal questions often quote names of documents, ID numbers, phone
// numbers or account details. Query logs keep the question text, so
// entries pass through a Scrubber first. Detection is regexp based; each
// rule replaces its matches with a typed placeholder such as [EMAIL].
package pii
