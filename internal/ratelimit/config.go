package ratelimit

// Config describes one multi-tier token bucket: sustained refill rates for
// three time windows plus the per-second burst capacity.
type Config struct {
	PerSecond float64
	PerMinute float64
	PerHour   float64
	Burst     float64
}

func Sensitive() Config {
	return Config{PerSecond: 1, PerMinute: 10, PerHour: 100, Burst: 2}
}

func ReadOnly() Config {
	return Config{PerSecond: 20, PerMinute: 200, PerHour: 2000, Burst: 50}
}

func Connection() Config {
	return Config{PerSecond: 5, PerMinute: 20, PerHour: 100, Burst: 10}
}

func Default() Config {
	return Config{PerSecond: 10, PerMinute: 100, PerHour: 1000, Burst: 20}
}

// MethodConfigs maps RPC method names to bucket configs. Built once at
// startup and read-only afterwards.
type MethodConfigs struct {
	byMethod map[string]Config
	fallback Config
}

var sensitiveMethods = []string{
	"eth_sendTransaction",
	"eth_sign",
	"eth_signTypedData",
	"eth_signTypedData_v3",
	"eth_signTypedData_v4",
	"personal_sign",
	"wallet_addEthereumChain",
	"wallet_switchEthereumChain",
}

var connectionMethods = []string{
	"eth_requestAccounts",
	"wallet_requestPermissions",
}

var readOnlyMethods = []string{
	"eth_call",
	"eth_estimateGas",
	"eth_getBalance",
	"eth_getCode",
	"eth_getStorageAt",
	"eth_getTransactionCount",
	"eth_getBlockByNumber",
	"eth_getBlockByHash",
	"eth_getTransactionByHash",
	"eth_getTransactionReceipt",
	"eth_getLogs",
	"eth_gasPrice",
	"eth_blockNumber",
}

// DefaultMethodConfigs returns the standard method classification.
func DefaultMethodConfigs() *MethodConfigs {
	m := &MethodConfigs{
		byMethod: make(map[string]Config),
		fallback: Default(),
	}
	for _, method := range sensitiveMethods {
		m.byMethod[method] = Sensitive()
	}
	for _, method := range connectionMethods {
		m.byMethod[method] = Connection()
	}
	for _, method := range readOnlyMethods {
		m.byMethod[method] = ReadOnly()
	}
	return m
}

// Set overrides the config for a method. Intended for setup only, before the
// limiter starts serving requests.
func (m *MethodConfigs) Set(method string, cfg Config) {
	m.byMethod[method] = cfg
}

// For returns the config for a method, falling back to the default class.
func (m *MethodConfigs) For(method string) Config {
	if cfg, ok := m.byMethod[method]; ok {
		return cfg
	}
	return m.fallback
}
