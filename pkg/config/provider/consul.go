// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	consulapi "github.com/hashicorp/consul/api"
)

// ConsulProvider loads configuration from a Consul KV key and watches it
// via blocking queries.
type ConsulProvider struct {
	client *consulapi.Client
	key    string

	mu        sync.Mutex
	closed    bool
	cancelled chan struct{}
}

// NewConsulProvider creates a provider backed by a Consul KV key.
// endpoints[0], if present, overrides the default Consul HTTP address.
func NewConsulProvider(key string, endpoints []string) (*ConsulProvider, error) {
	if key == "" {
		return nil, fmt.Errorf("consul key is required")
	}

	cfg := consulapi.DefaultConfig()
	if len(endpoints) > 0 {
		cfg.Address = endpoints[0]
	}

	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulProvider{
		client:    client,
		key:       key,
		cancelled: make(chan struct{}),
	}, nil
}

// Type returns TypeConsul.
func (p *ConsulProvider) Type() Type {
	return TypeConsul
}

// Load reads the raw value at the configured key.
func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	kv := p.client.KV()
	pair, _, err := kv.Get(p.key, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", p.key)
	}
	return pair.Value, nil
}

// Watch polls the key with Consul's blocking-query mechanism and signals
// a change whenever the KV entry's ModifyIndex advances.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("provider is closed")
	}
	p.mu.Unlock()

	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, ch)

	slog.Info("Watching consul key", "key", p.key)
	return ch, nil
}

func (p *ConsulProvider) watchLoop(ctx context.Context, ch chan<- struct{}) {
	defer close(ch)

	kv := p.client.KV()
	var lastIndex uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.cancelled:
			return
		default:
		}

		opts := (&consulapi.QueryOptions{WaitIndex: lastIndex}).WithContext(ctx)
		pair, meta, err := kv.Get(p.key, opts)
		if err != nil {
			slog.Error("Consul watch error", "key", p.key, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-p.cancelled:
				return
			default:
				continue
			}
		}

		if pair != nil && meta.LastIndex > lastIndex {
			changed := lastIndex != 0
			lastIndex = meta.LastIndex
			if changed {
				select {
				case ch <- struct{}{}:
					slog.Debug("Consul key changed", "key", p.key)
				default:
				}
			}
		}
	}
}

// Close stops watching.
func (p *ConsulProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.cancelled)
	return nil
}

var _ Provider = (*ConsulProvider)(nil)
