package domain

// Credential type names understood by the credential handlers.
const (
	CredentialPassword   = "password"
	CredentialTOTP       = "totp"
	CredentialClientCert = "cert"
)

// Credential carries a new credential value supplied by a caller for
// storage, e.g. a plaintext password to be hashed or a TOTP secret.
type Credential struct {
	Type string
	// Value is the secret material: plaintext password, base32 TOTP
	// secret, or PEM-encoded certificate depending on Type.
	Value string
	// Device optionally names the device a one-time-password secret is
	// bound to.
	Device string
}

// CredentialTemplate is a built-in description of a credential type,
// used to materialize required-credential declarations.
type CredentialTemplate struct {
	Type      string
	FormLabel string
	Input     bool
	Secret    bool
}

// builtInCredentials is the registry of credential types a realm may
// declare as required.
var builtInCredentials = map[string]CredentialTemplate{
	CredentialPassword: {
		Type:      CredentialPassword,
		FormLabel: "Password",
		Input:     true,
		Secret:    true,
	},
	CredentialTOTP: {
		Type:      CredentialTOTP,
		FormLabel: "Authenticator Code",
		Input:     true,
		Secret:    true,
	},
	CredentialClientCert: {
		Type:      CredentialClientCert,
		FormLabel: "Client Certificate",
		Input:     false,
		Secret:    false,
	},
}

// TemplateFor returns the built-in template for a credential type name.
func TemplateFor(typeName string) (CredentialTemplate, bool) {
	tpl, ok := builtInCredentials[typeName]
	return tpl, ok
}
