package common

// DocumentSuffix marks objects that hold key-material documents. Objects under
// the namespace prefix without it are ignored.
const DocumentSuffix = ".xml"

// DocumentContentType is attached to every uploaded document.
const DocumentContentType = "application/xml"

// MaxNameLength is the longest friendly name accepted verbatim as part of a
// storage key, counted in UTF-16 code units.
const MaxNameLength = 256
