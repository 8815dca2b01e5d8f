package rand

// A Key names a random stream. Keys are plain values: copying one copies the
// stream identity, and deriving children (Split, Fold) never changes the
// parent. Every stochastic call site takes its own derived key, so results do
// not depend on the order in which call sites run.
type Key struct {
	Hi uint64 `yaml:"hi" json:"hi"`
	Lo uint64 `yaml:"lo" json:"lo"`
}

const golden = 0x9e3779b97f4a7c15

// splitmix64 finalizer
func mix(x uint64) uint64 {
	x += golden
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// NewKey creates the root key for a seed
func NewKey(seed int64) Key {
	s := uint64(seed)
	return Key{
		Hi: mix(s),
		Lo: mix(s ^ 0x5851f42d4c957f2d),
	}
}

// Fold derives the child key for data. Different data values give
// independent streams.
func (k Key) Fold(data uint64) Key {
	d := mix(data)
	return Key{
		Hi: mix(k.Hi ^ d),
		Lo: mix(k.Lo + d*golden + 1),
	}
}

// Split returns n child keys. Child i is the same as Fold(i).
func (k Key) Split(n int) []Key {
	keys := make([]Key, n)
	for i := range keys {
		keys[i] = k.Fold(uint64(i))
	}
	return keys
}

// Next returns the key to carry forward and a subkey to consume now.
func (k Key) Next() (carry Key, sub Key) {
	ks := k.Split(2)
	return ks[0], ks[1]
}

// Generator returns a fresh generator for this key's stream.
func (k Key) Generator() *Generator {
	g, _ := NewGeneratorSlice([]uint64{k.Hi, k.Lo})
	return g
}
