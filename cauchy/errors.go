package cauchy

import "errors"

var (
	ErrTooFewDataShards    = errors.New("cauchy: too few data shards")
	ErrTooManyDataShards   = errors.New("cauchy: too many data shards")
	ErrTooFewParityShards  = errors.New("cauchy: too few parity shards")
	ErrTooManyParityShards = errors.New("cauchy: too many parity shards")
	ErrTooFewShards        = errors.New("cauchy: too few shards given")
	ErrTooManyShards       = errors.New("cauchy: too many shards given")
	ErrEmptyShard          = errors.New("cauchy: empty shard")
	ErrShardSize           = errors.New("cauchy: shards of different sizes")
	ErrTooFewShardsPresent = errors.New("cauchy: too few shards present to reconstruct")
)
