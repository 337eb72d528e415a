// Package schema loads metadata schema templates and validates metadata
// documents against them.
//
// Templates are JSON Schema documents. Three are built in (content, nft and
// encrypted); more can be placed in an override directory, where they may use
// JSONC comments and shadow a built-in template of the same name. Besides the
// standard keywords a template may declare:
//
//	"assets":  ["preview"]   extra fields that hold uploadable files
//	"encrypt": true          assets are encrypted before upload by default
//
// Property "default" values fill fields the caller left unset.
package schema
