package domain

// BuiltinProfiles returns the transfer jobs `rcops profile init` seeds.
func BuiltinProfiles() []TransferProfile {
	return []TransferProfile{
		{
			Name:             "lab396-to-mcl",
			ClientID:         "0ba8e7a7-3f08-49bd-adde-61491161882c",
			SourceEndpointID: "095bd11b-e263-44dc-ad19-6dd4b463207e",
			DestEndpointID:   "eef905af-dc3e-4f55-8c87-7b804cfb654f",
			Label:            "Transfer from /storage/long to /storage/group/MCL/default/globus-share",
			SyncLevel:        "checksum",
			CredentialKey:    "globus/lab396-to-mcl",
			Items: []ItemTemplate{
				{Source: "/lab396", Dest: "/", Recursive: true},
			},
			FilterRules: []RuleTemplate{
				{Name: "*", Method: FilterInclude, Type: FilterTypeDir},
				{Name: "*.txt", Method: FilterInclude, Type: FilterTypeFile},
			},
			Wait: true,
		},
		{
			Name:             "cqi-archive",
			ClientID:         "a619acea-bc58-40c7-ad6a-fd422c75bfd0",
			SourceEndpointID: "a7b0d0fe-f0ef-4186-a96b-fc89ee61679a",
			DestEndpointID:   "e3a52e0a-b824-4d4b-9b04-1dad86e54c07",
			Label:            "{location} {today} archive",
			CredentialKey:    "globus/cqi-archive",
			Items: []ItemTemplate{
				{Source: "./{location}/{today}/", Dest: "./{location}/DATA/", Recursive: true},
				{Source: "./{location}/{today}/MANIFESTS/", Dest: "./{location}/MANIFESTS/", Recursive: true},
			},
			FilterRules: []RuleTemplate{
				{Name: "*.zip", Method: FilterInclude, Type: FilterTypeFile},
				{Name: "MANIFESTS", Method: FilterExclude, Type: FilterTypeDir},
				{Name: "eligible_for_deletion_{today}.txt", Method: FilterExclude, Type: FilterTypeFile},
				{Name: "*.txt", Method: FilterInclude, Type: FilterTypeFile},
			},
		},
		{
			Name:             "nucci-share-ls",
			ClientID:         "c3554afe-be59-4196-a9a0-3f5abc29f021",
			SourceEndpointID: "606bef12-cf0b-4c90-9432-13039595d2b3",
			CredentialKey:    "globus/nucci-share-ls",
		},
	}
}
