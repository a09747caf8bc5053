package watch

// OneOf passes iff the observed value is a member of the allowed set.
type OneOf struct {
	Values []interface{}

	msgs messages
}

func (c *OneOf) Evaluate(des *Descriptor, value interface{}) Verdict {
	return c.msgs.verdict(des, value, contains(c.Values, value))
}

// NoneOf passes iff the observed value is not a member of the
// disallowed set.
type NoneOf struct {
	Values []interface{}

	msgs messages
}

func (c *NoneOf) Evaluate(des *Descriptor, value interface{}) Verdict {
	return c.msgs.verdict(des, value, !contains(c.Values, value))
}

func contains(values []interface{}, value interface{}) bool {
	for _, candidate := range values {
		if equalValues(candidate, value) {
			return true
		}
	}

	return false
}
