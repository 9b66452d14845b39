package security

// In-memory client registry (replace with DB/config later)
type Client struct {
	ID      string
	Secret  string
	Perms   []string // e.g. {"checkout.read","checkout.write"}
	Enabled bool
}

var Clients = map[string]Client{
	"storefront":     {ID: "storefront", Secret: "storefront-secret", Perms: []string{"checkout.read", "checkout.write"}, Enabled: true},
	"svc-backoffice": {ID: "svc-backoffice", Secret: "backoffice-secret", Perms: []string{"checkout.read"}, Enabled: true},
}
