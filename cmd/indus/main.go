// Copyright (C) The Indus Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import "github.com/parazodiac/Indus"

func main() {
	indus.Main()
}
