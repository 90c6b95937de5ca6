package fx

// Converter prices amounts in the reporting currency at a single current rate.
type Converter struct {
	policy Policy
	rate   float64
}

// NewConverter constructs a converter. Unusable rates fall back to FallbackRate.
func NewConverter(policy Policy, rate float64) *Converter {
	if len(policy.LocalTokens) == 0 {
		policy = DefaultPolicy()
	}
	return &Converter{policy: policy, rate: EffectiveRate(rate)}
}

// Rate returns the rate applied to foreign amounts.
func (c *Converter) Rate() float64 {
	return c.rate
}

// Policy returns the local-currency policy.
func (c *Converter) Policy() Policy {
	return c.policy
}

// Conversion is the outcome of pricing one amount.
type Conversion struct {
	Amount    float64
	IsForeign bool
}

// Convert multiplies foreign amounts by the rate and passes local amounts through.
func (c *Converter) Convert(label string, amount float64) Conversion {
	if c.policy.IsLocal(label) {
		return Conversion{Amount: amount}
	}
	return Conversion{Amount: amount * c.rate, IsForeign: true}
}
