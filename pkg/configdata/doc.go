// Package configdata defines the little-endian, fixed-layout binary config
// records serialiseConfig writes to "<prefix>/<record_name>.data". Every
// record leads with a Magic/Version pair so a runtime component reading the
// blob can detect a layout skew explicitly rather than silently misreading
// a shifted struct.
package configdata
