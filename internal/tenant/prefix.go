package tenant

// PrefixKey namespaces a cache or lock key by tenant. Keys without a tenant
// are returned unchanged.
func PrefixKey(tenantID, key string) string {
	if tenantID == "" {
		return key
	}
	return tenantID + ":" + key
}
