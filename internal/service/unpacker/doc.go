// Package unpacker extracts provisioning archives.
//
// Two strategies exist, tar+gzip and zip, chosen by file extension rather
// than by sniffing content. After extraction the top-level directory, whose
// name is the archive name without its compression extensions, can be renamed
// to a fixed alias so consumers see a stable path across versions.
package unpacker
