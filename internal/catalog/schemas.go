package catalog

// Column lists are in the order the shipped scalers and classifiers were fit
// with. Reordering any of them silently corrupts predictions.

var keplerSchema = Schema{
	Catalog: Kepler,
	Title:   "Kepler Objects of Interest",
	Numeric: []string{
		"koi_period", "koi_eccen", "koi_longp", "koi_impact", "koi_duration", "koi_ingress", "koi_depth", "koi_ror",
		"koi_srho", "koi_prad", "koi_sma", "koi_incl", "koi_teq", "koi_insol", "koi_dor", "koi_ldm_coeff4",
		"koi_ldm_coeff3", "koi_ldm_coeff2", "koi_ldm_coeff1", "koi_max_sngle_ev", "koi_max_mult_ev", "koi_model_snr", "koi_count",
		"koi_num_transits", "koi_tce_plnt_num", "koi_bin_oedp_sig", "koi_model_dof",
		"koi_model_chisq", "koi_steff", "koi_slogg", "koi_smet", "koi_srad", "koi_smass", "koi_sage",
		"ra", "dec", "koi_kepmag", "koi_gmag", "koi_rmag", "koi_imag", "koi_zmag", "koi_jmag", "koi_hmag", "koi_kmag", "koi_fwm_stat_sig",
		"koi_fwm_sra", "koi_fwm_sdec", "koi_fwm_srao", "koi_fwm_sdeco", "koi_fwm_prao", "koi_fwm_pdeco", "koi_dicco_mra", "koi_dicco_mdec",
		"koi_dicco_msky", "koi_dikco_mra", "koi_dikco_mdec", "koi_dikco_msky",
	},
	Categorical: []string{"koi_fittype", "koi_parm_prov", "koi_tce_delivname", "koi_sparprov"},
	Columns:     RequireColumns,
	Impute:      ImputeArtifactMedian,
	ID:          Identifier{Column: "kepid", Prefix: "KIC "},
	Display: []DisplayField{
		{Label: "Planet orbital period", Column: "koi_period", Decimals: 3},
		{Label: "Planet Radius", Column: "koi_prad", Decimals: 2},
		{Label: "Transit Depth", Column: "koi_depth", Decimals: 2},
	},
	Accuracy: 87,
}

var k2Schema = Schema{
	Catalog: K2,
	Title:   "K2 Planets and Candidates",
	Numeric: []string{
		"st_dens", "pl_cmasse", "sy_kepmag", "st_radv", "pl_orbsmax", "pl_dens", "pl_massj", "pl_insol", "pl_bmasse", "ra", "pl_trandep", "st_logg", "sy_bmag", "st_age", "pl_occdep",
		"pl_orbeccen", "sy_jmag", "sy_kmag", "elat", "dec", "sy_w1mag", "st_rad", "pl_rvamp", "pl_bmassj", "pl_orblper", "pl_tranmid", "sy_gmag", "elon", "sy_imag", "st_rotp", "pl_msinij",
		"pl_orbtper", "sy_pm", "st_teff", "pl_orbper", "sy_plx", "sy_umag", "pl_cmassj", "pl_eqt", "sy_gaiamag", "st_mass", "pl_masse", "sy_rmag", "sy_dist", "sy_zmag", "pl_orbincl",
		"sy_pmdec", "st_met", "glat", "sy_w4mag", "pl_imppar", "ttv_flag", "pl_projobliq", "st_lum", "sy_pmra", "pl_trueobliq", "pl_ratror", "sy_icmag", "pl_rade", "pl_trandur",
		"sy_hmag", "glon", "pl_radj", "st_vsin", "sy_w2mag", "sy_vmag", "pl_msinie", "sy_tmag", "pl_ratdor", "sy_w3mag",
	},
	Columns: RequireColumns,
	Impute:  ImputeArtifactMedian,
	ID:      Identifier{Column: "hostname"},
	Display: []DisplayField{
		{Label: "Planet radius", Column: "pl_rade", Decimals: 3},
		{Label: "Transit duration", Column: "pl_trandur", Decimals: 2},
		{Label: "Planet orbital period", Column: "pl_orbper", Decimals: 2},
	},
	Accuracy: 92,
}

var tessSchema = Schema{
	Catalog: TESS,
	Title:   "TESS Objects of Interest",
	Numeric: []string{
		"st_pmra", "st_pmdec", "pl_orbper", "pl_trandurh", "pl_trandep",
		"pl_rade", "pl_insol", "pl_eqt", "st_tmag", "st_dist",
		"st_teff", "st_logg", "st_rad", "pl_pnum",
	},
	LogFeatures: []string{
		"pl_orbper", "pl_trandurh", "pl_trandep",
		"pl_rade", "pl_insol", "pl_eqt",
		"st_dist", "st_rad",
	},
	Columns: RequireColumns,
	Impute:  ImputeArtifactMedian,
	ID:      Identifier{Column: "tid", Prefix: "TIC "},
	Display: []DisplayField{
		{Label: "Planet radius", Column: "pl_rade", Decimals: 3},
		{Label: "Transit duration", Column: "pl_trandurh", Decimals: 2},
		{Label: "Planet orbital period", Column: "pl_orbper", Decimals: 2},
	},
	Accuracy: 77,
}

var demoSchema = Schema{
	Catalog: Demo,
	Title:   "Demo (synthetic, untrained)",
	Numeric: []string{
		"koi_period", "koi_duration", "koi_depth",
		"koi_prad", "koi_teq", "koi_insol",
	},
	Columns: SynthesizeColumns,
	Impute:  ImputeBatchMean,
	ID:      Identifier{Prefix: "KIC-", Synthetic: true},
	Display: []DisplayField{
		{Label: "orbital_period", Column: "koi_period", Decimals: 3},
		{Label: "planet_radius", Column: "koi_prad", Decimals: 2},
		{Label: "transit_depth", Column: "koi_depth", Truncate: true},
	},
	Accuracy: 95,
}
