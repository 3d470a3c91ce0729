// SPDX-License-Identifier: MPL-2.0

// Package loadctx implements isolated module loading contexts.
//
// A Context resolves module requests against one resolved package set,
// loads each module image once and hands out reference-counted handles.
// When the resolver has no candidate a host ModuleLookup may supply the
// module instead. Collectible contexts can be unloaded: after
// RequestUnload no new loads are served and the context becomes
// StateUnloaded once the last Handle is released. An Observer reports
// that transition without keeping the context alive.
package loadctx
