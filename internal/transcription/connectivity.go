// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transcription

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	resty "github.com/go-resty/resty/v2"
)

// ConnectivityChecker answers whether the transcription provider is
// reachable right now.
type ConnectivityChecker interface {
	IsOnline(ctx context.Context) bool
}

// probeChecker issues a lightweight request against the probe URL and caches
// the verdict for probePeriod, so queue runs do not hammer the endpoint.
type probeChecker struct {
	logger commons.Logger
	client *resty.Client
	url    string
	period time.Duration

	mu        sync.Mutex
	lastCheck time.Time
	lastState bool
}

func NewProbeChecker(logger commons.Logger, probeURL string, period time.Duration) ConnectivityChecker {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0)
	return &probeChecker{
		logger: logger,
		client: client,
		url:    probeURL,
		period: period,
	}
}

func (p *probeChecker) IsOnline(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.period > 0 && !p.lastCheck.IsZero() && time.Since(p.lastCheck) < p.period {
		return p.lastState
	}

	resp, err := p.client.R().SetContext(ctx).Head(p.url)
	online := err == nil && resp.StatusCode() < http.StatusInternalServerError
	if err != nil {
		p.logger.Debugf("connectivity probe failed: %v", err)
	}

	p.lastCheck = time.Now()
	p.lastState = online
	return online
}
