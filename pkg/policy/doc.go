// Package policy implements the policy runtime: named nonrecursive rule
// theories, top-down query evaluation with negation-as-failure, recursion
// rejection across policies, simulation, and policy file loading.
//
// A policy is a named collection of rules whose tables other policies
// reference with a `name:` prefix. Datasource policies hold the fact tables
// published by pkg/datasource; classification policies hold the rules that
// derive conclusions from them, such as
//
//	disconnect_network(vm, network) :-
//	    error(vm),
//	    nova:virtual_machine(vm),
//	    nova:network(vm, network),
//	    not neutron:public_network(network),
//	    neutron:owner(network, network_owner),
//	    nova:owner(vm, vm_owner),
//	    not same_group(network_owner, vm_owner)
package policy
