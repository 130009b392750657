package stdlib

func truth(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func builtinNot(args []int64) (int64, error) {
	return truth(args[0] == 0), nil
}

func builtinAnd(args []int64) (int64, error) {
	for _, a := range args {
		if a == 0 {
			return 0, nil
		}
	}
	return 1, nil
}

func builtinOr(args []int64) (int64, error) {
	for _, a := range args {
		if a != 0 {
			return 1, nil
		}
	}
	return 0, nil
}
