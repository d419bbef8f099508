package heap

import (
	"fmt"
	"math/big"
)

// Platform classes whose instances the heap knows how to materialize
const (
	StringClass     = "java/lang/String"
	BigIntegerClass = "java/math/BigInteger"
	AddressClass    = "io/contract/sdk/Address"

	bigIntegerField = "value"
	addressField    = "address"
)

// NewStringArray materializes a String[]
func (h *Heap) NewStringArray(values []string) (*ObjectHandle, error) {
	arr, err := h.NewArray("[Ljava/lang/String;", len(values))
	if err != nil {
		return nil, err
	}
	for i, s := range values {
		if err := h.SetElement(arr, i, s); err != nil {
			return nil, err
		}
	}
	return arr, nil
}

// StringArray reads a String[] back; null elements become empty strings
func (h *Heap) StringArray(hd *ObjectHandle) ([]string, error) {
	n, err := h.ArrayLength(hd)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		v, err := h.GetElement(hd, i)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out, nil
}

// NewByteArray materializes a byte[]
func (h *Heap) NewByteArray(b []byte) (*ObjectHandle, error) {
	arr, err := h.NewArray("[B", len(b))
	if err != nil {
		return nil, err
	}
	for i, x := range b {
		if err := h.SetElement(arr, i, int32(int8(x))); err != nil {
			return nil, err
		}
	}
	return arr, nil
}

// ByteArray reads a byte[] back
func (h *Heap) ByteArray(hd *ObjectHandle) ([]byte, error) {
	n, err := h.ArrayLength(hd)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := range out {
		v, err := h.GetElement(hd, i)
		if err != nil {
			return nil, err
		}
		x, _ := v.(int32)
		out[i] = byte(x)
	}
	return out, nil
}

// NewBigInteger materializes a java.math.BigInteger
func (h *Heap) NewBigInteger(v *big.Int) (*ObjectHandle, error) {
	obj, err := h.NewObject(BigIntegerClass)
	if err != nil {
		return nil, err
	}
	return obj, h.PutField(obj, bigIntegerField, v.String())
}

// BigInteger reads a java.math.BigInteger back
func (h *Heap) BigInteger(hd *ObjectHandle) (*big.Int, error) {
	if hd == nil {
		return nil, ErrNullReference
	}
	v, err := h.GetField(hd, bigIntegerField, "Ljava/lang/String;")
	if err != nil {
		return nil, err
	}
	s, _ := v.(string)
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: big integer %q", ErrCorruptState, s)
	}
	return n, nil
}

// NewAddress materializes an io.contract.sdk.Address holding a hex address
func (h *Heap) NewAddress(addr string) (*ObjectHandle, error) {
	obj, err := h.NewObject(AddressClass)
	if err != nil {
		return nil, err
	}
	return obj, h.PutField(obj, addressField, addr)
}

// AddressString reads the hex address out of an Address object
func (h *Heap) AddressString(hd *ObjectHandle) (string, error) {
	if hd == nil {
		return "", ErrNullReference
	}
	v, err := h.GetField(hd, addressField, "Ljava/lang/String;")
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}
