// Package network registers the IPv4/IPv6 helper contract of spec.md
// §4.3: validation, CIDR containment, private-range classification, and
// masking — built on seancfoley/ipaddress-go, the only IP-address library
// in the corpus.
package network

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/seancfoley/ipaddress-go/ipaddr"

	"kelora/internal/script"
)

// privateBlocks are the ranges ip_is_private classifies as non-public,
// covering RFC 1918, the IPv6 unique-local block, and both address
// families' link-local ranges.
var privateBlocks = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
}

func Factory() script.HelperFactory {
	return func(eng *script.Engine) []cel.EnvOption {
		return []cel.EnvOption{
			cel.Function("ip_valid",
				cel.Overload("ip_valid_string", []*cel.Type{cel.StringType}, cel.BoolType,
					cel.UnaryBinding(ipValid))),
			cel.Function("ip_version",
				cel.Overload("ip_version_string", []*cel.Type{cel.StringType}, cel.IntType,
					cel.UnaryBinding(ipVersion))),
			cel.Function("cidr_contains",
				cel.Overload("cidr_contains_string_string", []*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
					cel.BinaryBinding(cidrContains))),
			cel.Function("ip_is_private",
				cel.Overload("ip_is_private_string", []*cel.Type{cel.StringType}, cel.BoolType,
					cel.UnaryBinding(ipIsPrivate))),
			cel.Function("ip_mask",
				cel.Overload("ip_mask_string_int", []*cel.Type{cel.StringType, cel.IntType}, cel.StringType,
					cel.BinaryBinding(ipMask))),
		}
	}
}

func parseAddr(s string) *ipaddr.IPAddress {
	return ipaddr.NewIPAddressString(s).GetAddress()
}

func ipValid(v ref.Val) ref.Val {
	s, ok := v.Value().(string)
	if !ok {
		return types.NewErr("ip_valid: expected a string")
	}
	return types.Bool(parseAddr(s) != nil)
}

func ipVersion(v ref.Val) ref.Val {
	s, ok := v.Value().(string)
	if !ok {
		return types.NewErr("ip_version: expected a string")
	}
	addr := parseAddr(s)
	if addr == nil {
		return types.Int(0)
	}
	if addr.IsIPv6() {
		return types.Int(6)
	}
	return types.Int(4)
}

func cidrContains(cidrV, addrV ref.Val) ref.Val {
	cidr, ok1 := cidrV.Value().(string)
	addr, ok2 := addrV.Value().(string)
	if !ok1 || !ok2 {
		return types.NewErr("cidr_contains: expected (cidr string, address string)")
	}
	network := parseAddr(cidr)
	target := parseAddr(addr)
	if network == nil || target == nil {
		return types.NewErr("cidr_contains: invalid cidr or address")
	}
	return types.Bool(network.Contains(target))
}

func ipIsPrivate(v ref.Val) ref.Val {
	s, ok := v.Value().(string)
	if !ok {
		return types.NewErr("ip_is_private: expected a string")
	}
	target := parseAddr(s)
	if target == nil {
		return types.NewErr("ip_is_private: invalid address %q", s)
	}
	for _, block := range privateBlocks {
		net := parseAddr(block)
		if net != nil && net.Contains(target) {
			return types.True
		}
	}
	return types.False
}

func ipMask(addrV, prefixV ref.Val) ref.Val {
	s, ok := addrV.Value().(string)
	prefix, ok2 := prefixV.Value().(int64)
	if !ok || !ok2 {
		return types.NewErr("ip_mask: expected (address string, prefix int)")
	}
	addr := parseAddr(s)
	if addr == nil {
		return types.NewErr("ip_mask: invalid address %q", s)
	}
	masked := addr.ToPrefixBlockLen(ipaddr.BitCount(prefix))
	if masked == nil {
		return types.NewErr("ip_mask: invalid prefix length %d", prefix)
	}
	return types.String(masked.String())
}
