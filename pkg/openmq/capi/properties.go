package capi

import (
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/handle"
	"github.com/chris-alexander-pop/openmq-client/pkg/openmq/status"
)

// CreateProperties creates an empty properties bag.
func CreateProperties(out *Handle) Status {
	if out == nil {
		return status.NullPtrArg
	}
	*out = InvalidHandle
	h, st := allocate(openmq.NewProperties(), handle.KindProperties)
	if st != OK {
		return st
	}
	*out = h
	return OK
}

// FreeProperties releases a properties handle.
func FreeProperties(h Handle) Status {
	return free(h)
}

func withProperties(h Handle, fn func(p *openmq.Properties) Status) Status {
	p, st := acquire[*openmq.Properties](h, handle.KindProperties)
	if st != OK {
		return st
	}
	defer release(h)
	return fn(p)
}

func SetStringProperty(h Handle, key, value string) Status {
	return withProperties(h, func(p *openmq.Properties) Status {
		p.SetString(key, value)
		return OK
	})
}

func SetBoolProperty(h Handle, key string, value bool) Status {
	return withProperties(h, func(p *openmq.Properties) Status {
		p.SetBool(key, value)
		return OK
	})
}

func SetInt8Property(h Handle, key string, value int8) Status {
	return withProperties(h, func(p *openmq.Properties) Status {
		p.SetInt8(key, value)
		return OK
	})
}

func SetInt16Property(h Handle, key string, value int16) Status {
	return withProperties(h, func(p *openmq.Properties) Status {
		p.SetInt16(key, value)
		return OK
	})
}

func SetInt32Property(h Handle, key string, value int32) Status {
	return withProperties(h, func(p *openmq.Properties) Status {
		p.SetInt32(key, value)
		return OK
	})
}

func SetInt64Property(h Handle, key string, value int64) Status {
	return withProperties(h, func(p *openmq.Properties) Status {
		p.SetInt64(key, value)
		return OK
	})
}

func SetFloat32Property(h Handle, key string, value float32) Status {
	return withProperties(h, func(p *openmq.Properties) Status {
		p.SetFloat32(key, value)
		return OK
	})
}

func SetFloat64Property(h Handle, key string, value float64) Status {
	return withProperties(h, func(p *openmq.Properties) Status {
		p.SetFloat64(key, value)
		return OK
	})
}

func getProperty[T any](h Handle, key string, out *T,
	get func(p *openmq.Properties, key string) (T, error)) Status {

	if out == nil {
		return status.NullPtrArg
	}
	return withProperties(h, func(p *openmq.Properties) Status {
		v, err := get(p, key)
		if err != nil {
			return statusOf(err)
		}
		*out = v
		return OK
	})
}

func GetStringProperty(h Handle, key string, out *string) Status {
	return getProperty(h, key, out, (*openmq.Properties).GetString)
}

func GetBoolProperty(h Handle, key string, out *bool) Status {
	return getProperty(h, key, out, (*openmq.Properties).GetBool)
}

func GetInt8Property(h Handle, key string, out *int8) Status {
	return getProperty(h, key, out, (*openmq.Properties).GetInt8)
}

func GetInt16Property(h Handle, key string, out *int16) Status {
	return getProperty(h, key, out, (*openmq.Properties).GetInt16)
}

func GetInt32Property(h Handle, key string, out *int32) Status {
	return getProperty(h, key, out, (*openmq.Properties).GetInt32)
}

func GetInt64Property(h Handle, key string, out *int64) Status {
	return getProperty(h, key, out, (*openmq.Properties).GetInt64)
}

func GetFloat32Property(h Handle, key string, out *float32) Status {
	return getProperty(h, key, out, (*openmq.Properties).GetFloat32)
}

func GetFloat64Property(h Handle, key string, out *float64) Status {
	return getProperty(h, key, out, (*openmq.Properties).GetFloat64)
}

// PropertiesKeyIterationStart snapshots the key set for iteration.
func PropertiesKeyIterationStart(h Handle) Status {
	return withProperties(h, func(p *openmq.Properties) Status {
		p.KeyIterationStart()
		return OK
	})
}

// PropertiesKeyIterationHasNext reports whether another key remains.
func PropertiesKeyIterationHasNext(h Handle, out *bool) Status {
	if out == nil {
		return status.NullPtrArg
	}
	return withProperties(h, func(p *openmq.Properties) Status {
		*out = p.KeyIterationHasNext()
		return OK
	})
}

// PropertiesKeyIterationGetNext returns the next key.
func PropertiesKeyIterationGetNext(h Handle, out *string) Status {
	if out == nil {
		return status.NullPtrArg
	}
	return withProperties(h, func(p *openmq.Properties) Status {
		k, err := p.KeyIterationGetNext()
		if err != nil {
			return statusOf(err)
		}
		*out = k
		return OK
	})
}
