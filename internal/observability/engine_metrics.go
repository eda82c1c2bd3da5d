package observability

// Projection outcomes used as the "outcome" label of scale_projections_total.
const (
	OutcomeFits       = "fits"
	OutcomeTooLarge   = "too_large"
	OutcomeDegenerate = "degenerate"
)

// ObserveProjection counts one projected comparison object.
func (c *Collector) ObserveProjection(mode, outcome string) {
	if c == nil || c.Projections == nil {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	c.Projections.WithLabelValues(mode, outcome).Inc()
}

// ObserveRing records a freshly generated ring of n points.
func (c *Collector) ObserveRing(n int) {
	if c == nil {
		return
	}
	if c.RingsGenerated != nil {
		c.RingsGenerated.Inc()
	}
	if c.RingPoints != nil {
		c.RingPoints.Observe(float64(n))
	}
}

// ObserveCacheLookup records a ring cache hit or miss.
func (c *Collector) ObserveCacheLookup(hit bool) {
	if c == nil || c.RingCacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.RingCacheLookups.WithLabelValues(result).Inc()
}

// ObserveFraming records one camera placement.
func (c *Collector) ObserveFraming(antipodal bool) {
	if c == nil || c.Framings == nil {
		return
	}
	target := "center"
	if antipodal {
		target = "antipode"
	}
	c.Framings.WithLabelValues(target).Inc()
}

// SetActiveSessions updates the active session gauge.
func (c *Collector) SetActiveSessions(n int) {
	if c == nil || c.ActiveSessions == nil {
		return
	}
	c.ActiveSessions.Set(float64(n))
}
