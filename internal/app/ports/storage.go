package ports

type CachePort[T any] interface {
	Set(key string, val T)
	Get(key string) (T, bool)
	Keys() []string
	ClearKey(key string)
	ClearAll()
	FlushToDisk() error
}
