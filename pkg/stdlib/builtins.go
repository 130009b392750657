package stdlib

// RegisterDefaults adds all builtin functions.
func RegisterDefaults(r *Registry) {
	// Math
	r.Register(Fn{Name: "abs", Arity: 1, Doc: "abs(x): absolute value", Execute: builtinAbs})
	r.Register(Fn{Name: "neg", Arity: 1, Doc: "neg(x): -x", Execute: builtinNeg})
	r.Register(Fn{Name: "sign", Arity: 1, Doc: "sign(x): -1, 0 or 1", Execute: builtinSign})
	r.Register(Fn{Name: "min", Arity: -1, Doc: "min(x, ...): smallest argument", Execute: builtinMin})
	r.Register(Fn{Name: "max", Arity: -1, Doc: "max(x, ...): largest argument", Execute: builtinMax})
	r.Register(Fn{Name: "mod", Arity: 2, Doc: "mod(x, y): remainder, sign follows x", Execute: builtinMod})
	r.Register(Fn{Name: "pow", Arity: 2, Doc: "pow(x, n): x to the n-th power, n >= 0", Execute: builtinPow})

	// Truth values
	r.Register(Fn{Name: "not", Arity: 1, Doc: "not(x): 1 if x is 0, else 0", Execute: builtinNot})
	r.Register(Fn{Name: "and", Arity: -1, Doc: "and(x, ...): 1 if every argument is nonzero", Execute: builtinAnd})
	r.Register(Fn{Name: "or", Arity: -1, Doc: "or(x, ...): 1 if any argument is nonzero", Execute: builtinOr})
}
