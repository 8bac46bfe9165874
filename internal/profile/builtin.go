package profile

// Builtin profiles cover common log shapes out of the box. Rule order is
// deliberate: specific token formats come before broad numeric or hex runs
// so that, for example, a JWT is consumed before a generic base64 rule can
// see it. Assignment-style rules keep the key and separator; their value
// class rejects a leading bracket so a replacement marker is never
// re-matched and a second pass over sanitized text is trace-free.

func disabled() *bool { b := false; return &b }

// Default is the general-purpose profile applied when nothing more specific
// is selected.
func Default() *Definition {
	return &Definition{
		Name:        "default",
		Description: "General-purpose log redaction",
		Rules: []RuleDef{
			{Name: "jwt", Pattern: `\beyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\b`, Description: "JSON Web Tokens"},
			{Name: "aws_access_key", Pattern: `\bAKIA[0-9A-Z]{16}\b`, Description: "AWS access key IDs"},
			{Name: "bearer_token", Pattern: `(Bearer\s+)[a-zA-Z0-9_.-]+`, Replacement: "${1}[REDACTED_TOKEN]", Description: "Bearer authorization tokens"},
			{Name: "private_key", Pattern: `-----BEGIN\s+(?:RSA\s+)?PRIVATE\s+KEY-----`, Replacement: "[REDACTED_PRIVATE_KEY]", Description: "PEM private key headers"},
			{Name: "password", Pattern: `(?i)(password|passwd|pwd)([\s=:]+)[^\s\[]\S*`, Replacement: "${1}${2}[REDACTED]", Description: "Password assignments"},
			{Name: "uuid", Pattern: `\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}\b`, Description: "UUIDs"},
			{Name: "sha256", Pattern: `\b[a-fA-F0-9]{64}\b`, Description: "SHA-256 digests"},
			{Name: "sha1", Pattern: `\b[a-fA-F0-9]{40}\b`, Description: "SHA-1 digests"},
			{Name: "md5", Pattern: `\b[a-fA-F0-9]{32}\b`, Description: "MD5 digests"},
			{Name: "email", Pattern: `\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`, Description: "Email addresses"},
			{Name: "ip", Pattern: `\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`, Description: "IPv4 addresses"},
			{Name: "credit_card", Pattern: `\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`, Description: "Payment card numbers"},
			{Name: "ssn", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Description: "US social security numbers"},
			{Name: "phone", Pattern: `\b\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}\b`, Enabled: disabled(), Description: "Phone numbers (noisy, off by default)"},
		},
		Entropy: EntropyConfig{Enabled: true, Threshold: 4.2, MinLength: 12},
	}
}

func nginx() *Definition {
	return &Definition{
		Name:        "nginx",
		Description: "Nginx access and error log redaction",
		Rules: []RuleDef{
			{Name: "ip", Pattern: `\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`, Description: "Client IP addresses"},
			{Name: "email", Pattern: `\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`, Description: "Email addresses"},
			{Name: "password_param", Pattern: `(password|pwd)=[^\s&"\[][^\s&"]*`, Replacement: "${1}=[REDACTED]", Description: "Password query parameters"},
		},
		Entropy:          EntropyConfig{Enabled: true, Threshold: 4.5, MinLength: 16},
		FilenamePatterns: []string{"*.access.log", "*.error.log", "*nginx*.log"},
	}
}

func docker() *Definition {
	return &Definition{
		Name:        "docker",
		Description: "Docker container log redaction",
		Rules: []RuleDef{
			{Name: "secret_assignment", Pattern: `(?i)(api[_-]?key|token|secret)([\s=:]+)[^\s,}\[][^\s,}]*`, Replacement: "${1}${2}[REDACTED]", Description: "API keys and secrets"},
			{Name: "base64_token", Pattern: `\b[A-Za-z0-9+/]{40,}={0,2}\b`, Replacement: "[REDACTED_TOKEN]", Description: "Long base64 tokens"},
		},
		KeyPaths: []KeyPathRule{
			{Path: "env.password", Action: ActionRedact},
			{Path: "env.secret", Action: ActionRedact},
			{Path: "config.database.password", Action: ActionRedact},
		},
		Entropy:          EntropyConfig{Enabled: true, Threshold: 4.2, MinLength: 12},
		FilenamePatterns: []string{"*docker*.log", "container-*.log"},
	}
}

func cloudtrail() *Definition {
	return &Definition{
		Name:        "cloudtrail",
		Description: "AWS CloudTrail log redaction",
		Rules: []RuleDef{
			{Name: "aws_access_key", Pattern: `\bAKIA[0-9A-Z]{16}\b`, Description: "AWS access key IDs"},
			{Name: "aws_arn_account", Pattern: `\barn:aws:([^:]+):([^:]*):[0-9]{12}:`, Replacement: "arn:aws:${1}:${2}:[REDACTED_ACCOUNT]:", Description: "Account IDs inside ARNs"},
		},
		KeyPaths: []KeyPathRule{
			{Path: "userIdentity.accessKeyId", Action: ActionRedact},
			{Path: "requestParameters.password", Action: ActionRedact},
			{Path: "sourceIPAddress", Action: ActionRedact},
		},
		Entropy:          EntropyConfig{Enabled: true, Threshold: 4.0, MinLength: 20},
		FilenamePatterns: []string{"*cloudtrail*.json", "*cloudtrail*.log"},
	}
}

func application() *Definition {
	return &Definition{
		Name:        "application",
		Description: "General application log redaction",
		Rules: []RuleDef{
			{Name: "session_id", Pattern: `(?i)(session[_-]?id|sessionid)([\s=:]+)[^\s,}\[][^\s,}]*`, Replacement: "${1}${2}[REDACTED_SESSION]", Description: "Session identifiers"},
			{Name: "csrf_token", Pattern: `(?i)(csrf[_-]?token|authenticity[_-]?token)([\s=:]+)[^\s,}\[][^\s,}]*`, Replacement: "${1}${2}[REDACTED_TOKEN]", Description: "CSRF tokens"},
			{Name: "email", Pattern: `\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`, Description: "Email addresses"},
		},
		Entropy:          EntropyConfig{Enabled: true, Threshold: 4.2, MinLength: 12},
		FilenamePatterns: []string{"*.application.log", "production.log"},
	}
}

// Builtins returns the definitions of all built-in profiles.
func Builtins() []*Definition {
	return []*Definition{Default(), nginx(), docker(), cloudtrail(), application()}
}
