package streamserver

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheKey is (abs_path, sha256_hex(content)), so an edited policy file
// never hits a stale compiled form.
type cacheKey struct {
	absPath    string
	contentSHA string
}

// policyCache wraps an LRU bounded by a configured entry count.
type policyCache struct {
	lru *lru.Cache[cacheKey, *compiledPolicy]
}

func newPolicyCache(capacity int) (*policyCache, error) {
	if capacity <= 0 {
		capacity = 256
	}
	c, err := lru.New[cacheKey, *compiledPolicy](capacity)
	if err != nil {
		return nil, err
	}
	return &policyCache{lru: c}, nil
}

func (c *policyCache) get(key cacheKey) (*compiledPolicy, bool) {
	return c.lru.Get(key)
}

func (c *policyCache) put(key cacheKey, cp *compiledPolicy) {
	c.lru.Add(key, cp)
}
