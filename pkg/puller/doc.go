// SPDX-License-Identifier: MPL-2.0

// Package puller declares a set of packages, restores them into a local
// directory through an external engine and loads the restored modules.
//
// A Puller is built from a fluent Config:
//
//	p, err := puller.Build(func(c *puller.Config) {
//		c.Framework(puller.Net80).
//			Package("Humanizer.Core", "2.14.1").
//			Source("nuget", "https://api.nuget.org/v3/index.json").WithMapping("*").
//			Directory("/tmp/plugins")
//	})
//
// Pull generates nuget.config and a restore project in the directory, runs
// the Engine and parses obj/project.assets.json. LoadAll and LoadPackage
// then populate loadctx contexts that only this puller may extend.
package puller
