// Package importer merges bulk debt feeds into the debt store.
//
// Each row is validated and written independently. A bad row becomes an
// entry in the Summary and never stops the rows after it. Only a source
// that cannot be read at all fails the whole run.
package importer
