// Copyright 2024 The skylark Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package host

import (
	"sort"
	"sync"
)

const defaultDomain = "localhost"

// Hosts type represents all local domains set.
type Hosts struct {
	mu          sync.RWMutex
	defaultHost string
	hosts       map[string]struct{}
}

// NewHosts creates and initializes a Hosts instance given a set of local domains.
// The first domain is registered as the default host.
func NewHosts(domains ...string) *Hosts {
	hs := &Hosts{
		hosts: make(map[string]struct{}),
	}
	if len(domains) == 0 {
		hs.RegisterDefaultHost(defaultDomain)
		return hs
	}
	for i, domain := range domains {
		if i == 0 {
			hs.RegisterDefaultHost(domain)
		} else {
			hs.RegisterHost(domain)
		}
	}
	return hs
}

// RegisterDefaultHost registers the default host domain.
func (hs *Hosts) RegisterDefaultHost(domain string) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.defaultHost = domain
	hs.hosts[domain] = struct{}{}
}

// RegisterHost registers a host domain.
func (hs *Hosts) RegisterHost(domain string) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.hosts[domain] = struct{}{}
}

// DefaultHostName returns default host domain value.
func (hs *Hosts) DefaultHostName() string {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return hs.defaultHost
}

// IsLocalHost tells whether domain is a local host domain.
func (hs *Hosts) IsLocalHost(domain string) bool {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	_, ok := hs.hosts[domain]
	return ok
}

// HostNames returns the sorted set of registered host domains.
func (hs *Hosts) HostNames() []string {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	retVal := make([]string, 0, len(hs.hosts))
	for domain := range hs.hosts {
		retVal = append(retVal, domain)
	}
	sort.Strings(retVal)
	return retVal
}
